package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprintDeterminism(t *testing.T) {
	plan := map[string]any{
		"source": "people",
		"limit":  int64(10),
		"filter": []any{IRInt(15), IRString("b")},
	}

	id1, err := Fingerprint(DomainPlan, plan)
	require.NoError(t, err)

	id2, err := Fingerprint(DomainPlan, plan)
	require.NoError(t, err)

	assert.Equal(t, id1, id2, "Fingerprint must be deterministic")
	assert.Len(t, id1, 64, "SHA-256 hex is 64 characters")
}

func TestFingerprintChangesWithInput(t *testing.T) {
	id1, err := Fingerprint(DomainPlan, map[string]any{"v": IRInt(1)})
	require.NoError(t, err)
	id2, err := Fingerprint(DomainPlan, map[string]any{"v": IRFloat(1)})
	require.NoError(t, err)
	id3, err := Fingerprint(DomainStatement, map[string]any{"v": IRInt(1)})
	require.NoError(t, err)

	assert.NotEqual(t, id1, id2, "int and float operands must not collide")
	assert.NotEqual(t, id1, id3, "domain prefix must separate hashes")
}

func TestFingerprintRejectsNull(t *testing.T) {
	_, err := Fingerprint(DomainPlan, map[string]any{"v": IRNull{}})
	assert.Error(t, err)
}

func TestStatementID(t *testing.T) {
	a := StatementID("sqlite", `SELECT * FROM "t" WHERE "a" = ?`)
	b := StatementID("sqlite", `SELECT * FROM "t" WHERE "a" = ?`)
	c := StatementID("postgres", `SELECT * FROM "t" WHERE "a" = ?`)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
