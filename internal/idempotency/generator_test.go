package idempotency

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateKey(t *testing.T) {
	g := NewGenerator()

	a := g.GenerateKey(ScopeGatewayTransaction, map[string]interface{}{"billing_key": "bk_1", "amount": "13"})
	b := g.GenerateKey(ScopeGatewayTransaction, map[string]interface{}{"amount": "13", "billing_key": "bk_1"})
	c := g.GenerateKey(ScopeGatewayTransaction, map[string]interface{}{"amount": "14", "billing_key": "bk_1"})

	assert.Equal(t, a, b, "param order does not matter")
	assert.NotEqual(t, a, c)
	assert.True(t, strings.HasPrefix(a, "gateway_txn-"))
	assert.Len(t, a, len("gateway_txn-")+2*keyBytes)
	assert.True(t, g.Matches(ScopeGatewayTransaction, map[string]interface{}{"billing_key": "bk_1", "amount": "13"}, a))
	assert.False(t, g.Matches(ScopeGatewayTransaction, map[string]interface{}{"billing_key": "bk_2", "amount": "13"}, a))
}
