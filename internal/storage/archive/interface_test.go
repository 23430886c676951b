package archive

import "testing"

func TestBackends_ImplementStorage(t *testing.T) {
	var _ Storage = (*LocalFS)(nil)
	var _ Storage = (*S3Storage)(nil)
}
