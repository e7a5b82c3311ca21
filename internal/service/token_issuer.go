package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/HonoraryIndians/axon-sub001/internal/model"
)

// TokenIssuer mints and verifies reservation tokens.
//
// A token is base64url("userId:activityId:signature") where the signature is
// hex(HMAC-SHA256(secret, "userId:activityId")). Tokens are deterministic per
// user and activity; redemption state lives in the token store.
type TokenIssuer struct {
	secret   []byte
	validity time.Duration
}

// NewTokenIssuer creates a TokenIssuer signing with secret.
func NewTokenIssuer(secret string, validity time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), validity: validity}
}

// Validity returns how long an issued token may be redeemed.
func (i *TokenIssuer) Validity() time.Duration {
	return i.validity
}

// Issue builds the token for an admitted slot. It performs no I/O.
func (i *TokenIssuer) Issue(slot model.AdmissionSlot) (*model.ReservationToken, error) {
	payload := model.ReservationTokenPayload{
		UserID:               slot.UserID,
		CampaignActivityID:   slot.ActivityID,
		ProductID:            slot.ProductID,
		CampaignActivityType: slot.ActivityType,
		Quantity:             slot.Quantity,
	}
	if err := payload.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	issuedAt := slot.AdmittedAt
	if issuedAt.IsZero() {
		issuedAt = time.Now()
	}

	message := signingInput(slot.UserID, slot.ActivityID)
	raw := message + ":" + i.sign(message)

	return &model.ReservationToken{
		Token:     base64.RawURLEncoding.EncodeToString([]byte(raw)),
		Payload:   payload,
		IssuedAt:  issuedAt,
		ExpiresAt: issuedAt.Add(i.validity),
	}, nil
}

// Verify checks the token signature and returns the user and activity it was issued for.
func (i *TokenIssuer) Verify(token string) (userID, activityID int64, err error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(token, "="))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: malformed encoding", ErrInvalidToken)
	}

	parts := strings.Split(string(raw), ":")
	if len(parts) != 3 {
		return 0, 0, fmt.Errorf("%w: malformed token", ErrInvalidToken)
	}

	userID, err = strconv.ParseInt(parts[0], 10, 64)
	if err != nil || userID <= 0 {
		return 0, 0, fmt.Errorf("%w: malformed user", ErrInvalidToken)
	}
	activityID, err = strconv.ParseInt(parts[1], 10, 64)
	if err != nil || activityID <= 0 {
		return 0, 0, fmt.Errorf("%w: malformed activity", ErrInvalidToken)
	}

	got, err := hex.DecodeString(parts[2])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: malformed signature", ErrInvalidToken)
	}
	want, _ := hex.DecodeString(i.sign(signingInput(userID, activityID)))
	if !hmac.Equal(got, want) {
		return 0, 0, fmt.Errorf("%w: signature mismatch", ErrInvalidToken)
	}

	return userID, activityID, nil
}

func (i *TokenIssuer) sign(message string) string {
	mac := hmac.New(sha256.New, i.secret)
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

func signingInput(userID, activityID int64) string {
	return strconv.FormatInt(userID, 10) + ":" + strconv.FormatInt(activityID, 10)
}
