package dto

import (
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeStruct_TrimsAndEscapes(t *testing.T) {
	req := RewardRequest{
		WalletID:    " 7d0c2d9e-1f57-4bd4-a3c4-2b7a4b4e0d11 ",
		Reference:   "  submission:42 ",
		Description: "quiz <script>alert('x')</script> bonus",
	}
	SanitizeStruct(&req)

	assert.Equal(t, "7d0c2d9e-1f57-4bd4-a3c4-2b7a4b4e0d11", req.WalletID)
	assert.Equal(t, "submission:42", req.Reference)
	assert.Contains(t, req.Description, "&lt;script&gt;")
	assert.NotContains(t, req.Description, "<script>")
}

func TestSanitizeStruct_SkipsSignedToken(t *testing.T) {
	payload := "  WPT:abc:def+/&<x>  "
	req := PurchaseRequest{Token: payload, OrderID: " order-1 "}
	SanitizeStruct(&req)

	assert.Equal(t, "WPT:abc:def+/&<x>", req.Token)
	assert.Equal(t, "order-1", req.OrderID)
}

func TestSanitizeStruct_HandlesPointerString(t *testing.T) {
	name := "  <b>Mug</b>  "
	req := ProductUpdateRequest{Name: &name}
	SanitizeStruct(&req)

	assert.Equal(t, "&lt;b&gt;Mug&lt;/b&gt;", *req.Name)
	assert.Nil(t, req.Description)
}

func TestSanitizeStruct_NonPointerIsNoOp(t *testing.T) {
	s := "hello"
	SanitizeStruct(s) // should not panic
}

func TestSafeID(t *testing.T) {
	valid := []string{"ref-001", "REF_002", "a.b.c", "order:2026:17", "ABC-def_GHI.123"}
	for _, tc := range valid {
		assert.True(t, safeStringRe.MatchString(tc), "expected valid: %s", tc)
	}

	invalid := []string{
		"ref 001",  // space
		"ref<001>", // angle brackets
		"ref;DROP", // semicolon
		"",         // empty
		"ref\n001", // newline
	}
	for _, tc := range invalid {
		assert.False(t, safeStringRe.MatchString(tc), "expected invalid: %s", tc)
	}
}

func TestAdjustRequest_DirectionValidator(t *testing.T) {
	base := AdjustRequest{
		WalletID: "7d0c2d9e-1f57-4bd4-a3c4-2b7a4b4e0d11",
		Amount:   10,
		Reason:   "correction",
	}

	for _, dir := range []string{"credit", "debit"} {
		req := base
		req.Direction = dir
		assert.NoError(t, binding.Validator.ValidateStruct(&req), dir)
	}

	req := base
	req.Direction = "sideways"
	assert.Error(t, binding.Validator.ValidateStruct(&req))
}

func TestResetRequest_AllowsZeroBalance(t *testing.T) {
	zero := int64(0)
	req := ResetRequest{
		WalletID:   "7d0c2d9e-1f57-4bd4-a3c4-2b7a4b4e0d11",
		NewBalance: &zero,
		Reason:     "semester rollover",
	}
	require.NoError(t, binding.Validator.ValidateStruct(&req))

	req.NewBalance = nil
	assert.Error(t, binding.Validator.ValidateStruct(&req))
}

func TestTransferRequest_RejectsUnsafeKey(t *testing.T) {
	req := TransferRequest{
		ReceiverWalletID: "7d0c2d9e-1f57-4bd4-a3c4-2b7a4b4e0d11",
		Amount:           5,
		IdempotencyKey:   "key with spaces",
	}
	assert.Error(t, binding.Validator.ValidateStruct(&req))

	req.IdempotencyKey = ""
	assert.NoError(t, binding.Validator.ValidateStruct(&req))
}
