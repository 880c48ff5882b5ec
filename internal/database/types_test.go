package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentityKindValid(t *testing.T) {
	assert.True(t, IdentityPolice.Valid())
	assert.True(t, IdentityRegionalAdmin.Valid())
	assert.True(t, IdentityHotel.Valid())
	assert.True(t, IdentitySystem.Valid())
	assert.False(t, IdentityKind("").Valid())
	assert.False(t, IdentityKind("guest").Valid())
}

func TestNotificationValidate(t *testing.T) {
	stationID := "station-1"

	tests := []struct {
		name         string
		notification Notification
		wantErr      bool
	}{
		{
			name:         "officer with station",
			notification: Notification{RecipientKind: IdentityPolice, StationID: &stationID},
			wantErr:      false,
		},
		{
			name:         "officer without station",
			notification: Notification{RecipientKind: IdentityPolice},
			wantErr:      true,
		},
		{
			name:         "admin without station",
			notification: Notification{RecipientKind: IdentityRegionalAdmin},
			wantErr:      false,
		},
		{
			name:         "admin with station",
			notification: Notification{RecipientKind: IdentityRegionalAdmin, StationID: &stationID},
			wantErr:      true,
		},
		{
			name:         "hotel with station",
			notification: Notification{RecipientKind: IdentityHotel, StationID: &stationID},
			wantErr:      false,
		},
		{
			name:         "hotel without station",
			notification: Notification{RecipientKind: IdentityHotel},
			wantErr:      true,
		},
		{
			name:         "system is not a recipient",
			notification: Notification{RecipientKind: IdentitySystem, StationID: &stationID},
			wantErr:      true,
		},
		{
			name:         "unknown recipient kind",
			notification: Notification{RecipientKind: "bystander"},
			wantErr:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.notification.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
