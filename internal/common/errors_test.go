package common

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"plain error is internal", errors.New("boom"), EInternal},
		{"coded", Unauthorized("op", "no user"), EUnauthorized},
		{"wrapped coded", fmt.Errorf("outer: %w", NotFound("op", "missing")), ENotFound},
		{"uncoded wrapper around coded", &Error{Op: "outer", Err: Invalid("inner", "bad")}, EInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCode(tt.err))
		})
	}
}

func TestErrorMessage(t *testing.T) {
	err := &Error{Code: EInternal, Msg: "saving property", Err: errors.New("disk full")}
	assert.Equal(t, "saving property: disk full", err.Error())
	assert.Equal(t, "<not found>", (&Error{Code: ENotFound}).Error())
	assert.True(t, errors.Is(err, err.Err))
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(EUnauthorized))
	assert.Equal(t, http.StatusForbidden, HTTPStatus(EForbidden))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(ENotFound))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(EInvalid))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus("something else"))
}
