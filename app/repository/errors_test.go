package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestIsDuplicateKey(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "gorm translated", err: gorm.ErrDuplicatedKey, want: true},
		{name: "raw mysql 1062", err: &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, want: true},
		{name: "wrapped mysql 1062", err: fmt.Errorf("insert: %w", &mysql.MySQLError{Number: 1062}), want: true},
		{name: "other mysql error", err: &mysql.MySQLError{Number: 1213, Message: "Deadlock"}, want: false},
		{name: "record not found", err: gorm.ErrRecordNotFound, want: false},
		{name: "plain", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsDuplicateKey(tt.err))
		})
	}
}

func TestTranslateError(t *testing.T) {
	assert.ErrorIs(t, translateError(&mysql.MySQLError{Number: 1062}), ErrDuplicateKey)

	other := errors.New("connection refused")
	assert.Same(t, other, translateError(other))
	assert.NoError(t, translateError(nil))
}
