package testutils

import (
	"context"

	"github.com/dialhaven/recall/pkg/tenant"
	"github.com/dialhaven/recall/pkg/vector"
)

// MockVectorDriver is a test vector driver
type MockVectorDriver struct {
	Documents []vector.Document
	Results   []vector.Result
}

func NewMockVectorDriver() *MockVectorDriver {
	return &MockVectorDriver{}
}

func (m *MockVectorDriver) Index(_ context.Context, docs []vector.Document) error {
	m.Documents = append(m.Documents, docs...)
	return nil
}

func (m *MockVectorDriver) Query(_ context.Context, q vector.Query) ([]vector.Result, error) {
	var results []vector.Result
	for _, r := range m.Results {
		if r.TenantID != q.TenantID {
			continue
		}
		if r.CallerID != "" && r.CallerID != q.CallerID {
			continue
		}
		results = append(results, r)
	}

	if q.TopK > 0 && len(results) > q.TopK {
		results = results[:q.TopK]
	}
	return results, nil
}

func (m *MockVectorDriver) Delete(_ context.Context, _ []string) error {
	return nil
}

func (m *MockVectorDriver) PurgeTenant(_ context.Context, tenantID tenant.ID) (int64, error) {
	var kept []vector.Document
	var purged int64
	for _, d := range m.Documents {
		if d.TenantID == tenantID {
			purged++
			continue
		}
		kept = append(kept, d)
	}
	m.Documents = kept
	return purged, nil
}

func (m *MockVectorDriver) Close() error {
	return nil
}
