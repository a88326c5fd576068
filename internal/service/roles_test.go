package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeRoles(t *testing.T) {
	tests := []struct {
		name       string
		existing   []string
		phone      string
		superAdmin string
		want       []string
	}{
		{name: "new identity", existing: nil, phone: testPhone, superAdmin: testAdminPhone, want: []string{"user"}},
		{name: "super admin phone", existing: nil, phone: testAdminPhone, superAdmin: testAdminPhone, want: []string{"admin", "user"}},
		{name: "super admin already admin", existing: []string{"user", "admin"}, phone: testAdminPhone, superAdmin: testAdminPhone, want: []string{"admin", "user"}},
		{name: "admin kept without match", existing: []string{"admin", "user"}, phone: testPhone, superAdmin: testAdminPhone, want: []string{"admin", "user"}},
		{name: "user restored", existing: []string{"admin"}, phone: testPhone, superAdmin: "", want: []string{"admin", "user"}},
		{name: "no super admin configured", existing: []string{"user"}, phone: "", superAdmin: "", want: []string{"user"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeRoles(tt.existing, tt.phone, tt.superAdmin))
		})
	}
}

func TestComputeRoles_Idempotent(t *testing.T) {
	once := ComputeRoles([]string{"user"}, testAdminPhone, testAdminPhone)
	twice := ComputeRoles(once, testAdminPhone, testAdminPhone)
	assert.Equal(t, once, twice)
}

func TestComputeRoles_DoesNotMutateInput(t *testing.T) {
	existing := []string{"user"}
	_ = ComputeRoles(existing, testAdminPhone, testAdminPhone)
	assert.Equal(t, []string{"user"}, existing)
}
