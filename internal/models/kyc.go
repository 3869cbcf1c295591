package models

// IDType — тип документа, удостоверяющего личность.
type IDType string

const (
	IDTypeNationalID     IDType = "national_id"
	IDTypePassport       IDType = "passport"
	IDTypeDriversLicense IDType = "drivers_license"
)

// DocumentUploadURL — presigned URL для загрузки файла и итоговый адрес объекта.
type DocumentUploadURL struct {
	UploadURL string `json:"upload_url"`
	S3URL     string `json:"s3_url"`
}

// KYCUploadURLs — набор presigned URL для документов KYC.
type KYCUploadURLs struct {
	IDFront   DocumentUploadURL `json:"id_front"`
	IDBack    DocumentUploadURL `json:"id_back"`
	Selfie    DocumentUploadURL `json:"selfie"`
	ExpiresIn int               `json:"expires_in"`
}

// KYCSubmission — заявка на проверку документов.
type KYCSubmission struct {
	IDFrontURL string `json:"id_front_url" label:"Front of your ID" validate:"required,url"`
	IDBackURL  string `json:"id_back_url" label:"Back of your ID" validate:"required,url"`
	SelfieURL  string `json:"selfie_url" label:"Selfie" validate:"required,url"`
	IDNumber   string `json:"id_number" label:"ID number" validate:"required"`
	IDType     IDType `json:"id_type" label:"ID type" validate:"required,oneof=national_id passport drivers_license"`
}

// KYCSubmitResult — ответ на отправку KYC.
type KYCSubmitResult struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	KYCStatus KYCStatus `json:"kyc_status"`
}

// KYCStatusInfo — текущий статус проверки.
type KYCStatusInfo struct {
	Status      KYCStatus `json:"status"`
	SubmittedAt string    `json:"submitted_at,omitempty"`
	ReviewedAt  string    `json:"reviewed_at,omitempty"`
	CanInvest   bool      `json:"can_invest"`
}
