package domain

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatUSD(t *testing.T) {
	assert.Equal(t, "$9.99", FormatUSD(Money(9.99)))
	assert.Equal(t, "$15.00", FormatUSD(Money(5).Mul(decimal.NewFromInt(3))))
	assert.Equal(t, "$0.00", FormatUSD(decimal.Zero))
}

func TestRole_Keys(t *testing.T) {
	assert.Equal(t, "seller_token", RoleSeller.TokenKey())
	assert.Equal(t, "buyer_user", RoleBuyer.UserKey())
	assert.Equal(t, RoleBuyer, RoleSeller.Other())
	assert.Equal(t, "/auth/seller", RoleSeller.LoginPath())

	_, err := ParseRole("admin")
	assert.Error(t, err)
}

func TestLineItem_QtyDefaultsToOne(t *testing.T) {
	assert.Equal(t, 1, LineItem{}.Qty())
	assert.Equal(t, 4, LineItem{Quantity: 4}.Qty())
}

func TestSessionUser_MergeKeepsUnknownFields(t *testing.T) {
	var u SessionUser
	require.NoError(t, json.Unmarshal([]byte(`{"name":"Ann","email":"a@x.io","tier":"gold"}`), &u))

	var patch SessionUser
	require.NoError(t, json.Unmarshal([]byte(`{"name":"Anna"}`), &patch))
	u.Merge(&patch)

	assert.Equal(t, "Anna", u.Field("name"))
	assert.Equal(t, "a@x.io", u.Field("email"))

	out, err := json.Marshal(u)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Anna","email":"a@x.io","tier":"gold"}`, string(out))
}
