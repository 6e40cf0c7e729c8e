package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/yungbote/studyport-backend/internal/domain/transfer"
)

func TestFromMapsTransferCodes(t *testing.T) {
	cases := []struct {
		code   transfer.ErrorCode
		status int
	}{
		{transfer.CodeBadRequest, http.StatusBadRequest},
		{transfer.CodeCorruptArchive, http.StatusBadRequest},
		{transfer.CodeForbidden, http.StatusForbidden},
		{transfer.CodeNotFound, http.StatusNotFound},
		{transfer.CodeConflict, http.StatusConflict},
		{transfer.CodeStagingExpired, http.StatusGone},
		{transfer.CodeIO, http.StatusInternalServerError},
		{transfer.CodePermission, http.StatusInternalServerError},
		{transfer.CodePersistence, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		err := fmt.Errorf("wrapped: %w", transfer.NewError(tc.code, "op", "msg", nil))
		got := From(err)
		if got.Status != tc.status || got.Code != string(tc.code) {
			t.Fatalf("%s: want=%d got=%d/%s", tc.code, tc.status, got.Status, got.Code)
		}
	}
}

func TestFromPassesThroughAndDefaults(t *testing.T) {
	if From(nil) != nil {
		t.Fatalf("nil must stay nil")
	}
	ae := New(http.StatusUnauthorized, "unauthorized", nil)
	if From(ae) != ae {
		t.Fatalf("api error must pass through")
	}
	got := From(errors.New("boom"))
	if got.Status != http.StatusInternalServerError || got.Code != "internal" {
		t.Fatalf("unexpected default: %+v", got)
	}
}
