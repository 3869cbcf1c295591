package api

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/capitalized/internal/models"
)

// KYCUploadURLs запрашивает presigned URL для загрузки документов.
func (a *API) KYCUploadURLs(ctx context.Context) (*models.KYCUploadURLs, error) {
	const op = "api.KYCUploadURLs"
	var resp models.KYCUploadURLs
	if err := a.post(ctx, "/auth/kyc/upload-urls", nil, &resp); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &resp, nil
}

// SubmitKYC отправляет загруженные документы на проверку.
func (a *API) SubmitKYC(ctx context.Context, req models.KYCSubmission) (*models.KYCSubmitResult, error) {
	const op = "api.SubmitKYC"
	var resp models.KYCSubmitResult
	if err := a.post(ctx, "/auth/kyc/submit", req, &resp); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &resp, nil
}

// KYCStatus возвращает текущий статус проверки.
func (a *API) KYCStatus(ctx context.Context) (*models.KYCStatusInfo, error) {
	const op = "api.KYCStatus"
	var resp models.KYCStatusInfo
	if err := a.get(ctx, "/auth/kyc-status", &resp); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &resp, nil
}
