package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWhereBuilder(t *testing.T) {
	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	wb := newWhereBuilder()
	wb.add("profile", "worker")
	wb.add("status", "")
	wb.addSince("started_at", since)
	where, args := wb.build()

	assert.Equal(t, " WHERE profile = $1 AND started_at >= $2", where)
	assert.Equal(t, []any{"worker", since}, args)
	assert.Equal(t, 3, wb.next())

	where, args = newWhereBuilder().build()
	assert.Empty(t, where)
	assert.Empty(t, args)
}

func TestToPgText(t *testing.T) {
	assert.False(t, toPgText("").Valid)
	assert.Equal(t, "abc", toPgText("abc").String)
}

func TestRunContextValues(t *testing.T) {
	ctx := ContextWithUserAgent(ContextWithIPAddress(context.Background(), "10.0.0.1"), "curl/8")
	assert.Equal(t, "10.0.0.1", GetIPAddressFromContext(ctx))
	assert.Equal(t, "curl/8", GetUserAgentFromContext(ctx))

	assert.Empty(t, GetIPAddressFromContext(context.Background()))
	assert.Empty(t, GetUserAgentFromContext(context.Background()))
}
