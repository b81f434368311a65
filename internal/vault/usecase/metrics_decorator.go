package usecase

import (
	"context"
	"time"

	"github.com/pgquerytool/credvault/internal/metrics"
	vaultDomain "github.com/pgquerytool/credvault/internal/vault/domain"
)

// vaultUseCaseWithMetrics decorates VaultUseCase with metrics instrumentation.
type vaultUseCaseWithMetrics struct {
	next    VaultUseCase
	metrics metrics.BusinessMetrics
}

// NewVaultUseCaseWithMetrics wraps a VaultUseCase with metrics recording.
func NewVaultUseCaseWithMetrics(useCase VaultUseCase, m metrics.BusinessMetrics) VaultUseCase {
	return &vaultUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// record emits the counter and duration samples for one operation.
func (v *vaultUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	v.metrics.RecordOperation(ctx, operation, status)
	v.metrics.RecordDuration(ctx, operation, time.Since(start), status)
}

// StoreCredentials records metrics for credential store operations.
func (v *vaultUseCaseWithMetrics) StoreCredentials(ctx context.Context, profileID, username string, password []byte) error {
	start := time.Now()
	err := v.next.StoreCredentials(ctx, profileID, username, password)
	v.record(ctx, "credentials_store", start, err)
	return err
}

// RetrieveCredentials records metrics for credential retrieval operations.
func (v *vaultUseCaseWithMetrics) RetrieveCredentials(ctx context.Context, profileID string) (*vaultDomain.Credentials, error) {
	start := time.Now()
	creds, err := v.next.RetrieveCredentials(ctx, profileID)
	v.record(ctx, "credentials_retrieve", start, err)
	return creds, err
}

// UpdateCredentials records metrics for credential update operations.
func (v *vaultUseCaseWithMetrics) UpdateCredentials(ctx context.Context, profileID, username string, password []byte) error {
	start := time.Now()
	err := v.next.UpdateCredentials(ctx, profileID, username, password)
	v.record(ctx, "credentials_update", start, err)
	return err
}

// DeleteCredentials records metrics for credential deletion operations.
func (v *vaultUseCaseWithMetrics) DeleteCredentials(ctx context.Context, profileID string) error {
	start := time.Now()
	err := v.next.DeleteCredentials(ctx, profileID)
	v.record(ctx, "credentials_delete", start, err)
	return err
}

// HasCredentials records metrics for credential existence checks.
func (v *vaultUseCaseWithMetrics) HasCredentials(ctx context.Context, profileID string) bool {
	start := time.Now()
	ok := v.next.HasCredentials(ctx, profileID)
	v.record(ctx, "credentials_has", start, nil)
	return ok
}

// ListStoredProfiles records metrics for profile listing operations.
func (v *vaultUseCaseWithMetrics) ListStoredProfiles(ctx context.Context) ([]string, error) {
	start := time.Now()
	profiles, err := v.next.ListStoredProfiles(ctx)
	v.record(ctx, "profiles_list", start, err)
	return profiles, err
}

// RotateMasterKey records metrics for master key rotation operations.
func (v *vaultUseCaseWithMetrics) RotateMasterKey(ctx context.Context) (*vaultDomain.RotationReport, error) {
	start := time.Now()
	report, err := v.next.RotateMasterKey(ctx)
	v.record(ctx, "master_key_rotate", start, err)
	return report, err
}

// Close passes through to the wrapped use case.
func (v *vaultUseCaseWithMetrics) Close() {
	v.next.Close()
}
