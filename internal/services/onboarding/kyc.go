package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/capitalized/internal/lib/sl"
	"github.com/magabrotheeeer/capitalized/internal/models"
)

// KYCUploadURLs выдаёт presigned URL для загрузки документов. Сами файлы
// загружаются вне клиента.
func (s *Service) KYCUploadURLs(ctx context.Context) (*models.KYCUploadURLs, error) {
	const op = "services.KYCUploadURLs"
	if err := s.requireSession(ctx, ActionKYCUploadURLs); err != nil {
		return nil, err
	}
	urls, err := s.backend.KYCUploadURLs(ctx)
	if err != nil {
		return nil, s.fail(ActionKYCUploadURLs, "Failed to prepare document upload. Please try again.", fmt.Errorf("%s: %w", op, err))
	}
	return urls, nil
}

// SubmitKYC отправляет уже загруженные документы на проверку и обновляет
// статус KYC в кэше профиля.
func (s *Service) SubmitKYC(ctx context.Context, in models.KYCSubmission) (*models.KYCSubmitResult, error) {
	const op = "services.SubmitKYC"
	ctx = s.profiles.Pin(ctx)
	in.IDNumber = strings.TrimSpace(in.IDNumber)
	if in.IDType == "" {
		in.IDType = models.IDTypeNationalID
	}
	if err := s.validate.Validate(in); err != nil {
		return nil, s.fail(ActionSubmitKYC, "", err)
	}
	if err := s.requireSession(ctx, ActionSubmitKYC); err != nil {
		return nil, err
	}

	res, err := s.backend.SubmitKYC(ctx, in)
	if err != nil {
		return nil, s.fail(ActionSubmitKYC, "Failed to submit KYC. Please try again.", fmt.Errorf("%s: %w", op, err))
	}

	status := res.KYCStatus
	if status == "" {
		status = models.KYCPending
	}
	if err := s.profiles.UpdateUser(ctx, models.UserPatch{KYCStatus: &status}); err != nil {
		return nil, s.fail(ActionSubmitKYC, "", fmt.Errorf("%s: %w", op, err))
	}
	if res.Message == "" {
		res.Message = "Your documents are under review. This may take up to 24 hours. You can explore the app while waiting."
	}
	s.log.Info("kyc submitted", sl.Op(op), slog.String("status", string(status)))
	return res, nil
}

// RefreshKYCStatus перечитывает статус проверки и право инвестировать.
func (s *Service) RefreshKYCStatus(ctx context.Context) (*models.KYCStatusInfo, error) {
	const op = "services.RefreshKYCStatus"
	ctx = s.profiles.Pin(ctx)
	if err := s.requireSession(ctx, ActionKYCStatus); err != nil {
		return nil, err
	}
	info, err := s.backend.KYCStatus(ctx)
	if err == nil {
		status := info.Status.Normalize()
		err = s.profiles.UpdateUser(ctx, models.UserPatch{
			KYCStatus: &status,
			CanInvest: models.Ptr(info.CanInvest),
		})
	}
	if err != nil {
		return nil, s.fail(ActionKYCStatus, "Failed to load KYC status.", fmt.Errorf("%s: %w", op, err))
	}
	return info, nil
}
