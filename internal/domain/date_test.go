package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDaysUntil(t *testing.T) {
	today := NewDate(2026, 5, 1)
	assert.Equal(t, 3, today.DaysUntil(NewDate(2026, 5, 4)))
	assert.Equal(t, 0, today.DaysUntil(today))
	assert.Equal(t, -1, today.DaysUntil(NewDate(2026, 4, 30)))
	assert.Equal(t, 31, today.DaysUntil(NewDate(2026, 6, 1)))
}

func TestDaysUntil_FarApart(t *testing.T) {
	start := NewDate(2024, 1, 1)
	// 400 Gregorian years are exactly 146097 days
	assert.Equal(t, 146097, start.DaysUntil(NewDate(2424, 1, 1)))
	assert.Equal(t, -146097, NewDate(2424, 1, 1).DaysUntil(start))
}

func TestDaysUntil_AcrossDSTInLocalZone(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	// 2026-03-08 is the spring-forward day in New York.
	today := DateOf(time.Date(2026, 3, 7, 23, 30, 0, 0, ny))
	assert.Equal(t, 2, today.DaysUntil(NewDate(2026, 3, 9)))
}

func TestDateOf_UsesLocationOfInstant(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	instant := time.Date(2026, 5, 1, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-05-01", DateOf(instant).String())
	assert.Equal(t, "2026-05-02", DateOf(instant.In(tokyo)).String())
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-05-04")
	require.NoError(t, err)
	assert.Equal(t, "2026-05-04", d.String())

	d, err = ParseDate("2026-05-04T18:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, "2026-05-04", d.String())

	_, err = ParseDate("05/04/2026")
	assert.ErrorIs(t, err, ErrBadRequest)
}

func TestDate_JSON(t *testing.T) {
	var payload struct {
		D Date `json:"d"`
		Z Date `json:"z"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"d":"2026-05-04","z":null}`), &payload))
	assert.Equal(t, 4, payload.D.Day())
	assert.True(t, payload.Z.IsZero())

	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"d":"2026-05-04","z":null}`, string(raw))
}

func TestDate_Dynamo(t *testing.T) {
	av, err := attributevalue.Marshal(NewDate(2026, 5, 4))
	require.NoError(t, err)
	assert.Equal(t, &types.AttributeValueMemberS{Value: "2026-05-04"}, av)

	var d Date
	require.NoError(t, attributevalue.Unmarshal(&types.AttributeValueMemberS{Value: "2026-05-04"}, &d))
	assert.Equal(t, "2026-05-04", d.String())

	require.NoError(t, attributevalue.Unmarshal(&types.AttributeValueMemberNULL{Value: true}, &d))
	assert.True(t, d.IsZero())
}

func TestPrice_WireFormats(t *testing.T) {
	var p Price
	require.NoError(t, json.Unmarshal([]byte(`15.49`), &p))
	assert.Equal(t, "15.49", p.String())

	raw, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Equal(t, "15.49", string(raw))

	av, err := attributevalue.Marshal(p)
	require.NoError(t, err)
	assert.Equal(t, &types.AttributeValueMemberN{Value: "15.49"}, av)
}

func TestMonthlyCost(t *testing.T) {
	cases := []struct {
		cycle BillingCycle
		want  string
	}{
		{CycleWeekly, "40"},
		{CycleMonthly, "10"},
		{CycleQuarterly, "3.33"},
		{CycleYearly, "0.83"},
		{"fortnightly", "10"},
	}
	for _, tc := range cases {
		t.Run(string(tc.cycle), func(t *testing.T) {
			s := Subscription{Price: MustPrice("10"), BillingCycle: tc.cycle}
			assert.Equal(t, tc.want, s.MonthlyCost().Round(2).String())
		})
	}
}
