package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeometryImplementsInterfaces(t *testing.T) {
	var _ driver.Valuer = Point{}
	var _ driver.Valuer = Ring{}
	var _ driver.Valuer = Corners{}
	var _ driver.Valuer = StringList{}

	for _, v := range []interface{}{&Point{}, &Ring{}, &Corners{}, &StringList{}} {
		_, ok := v.(interface{ Scan(interface{}) error })
		assert.True(t, ok, "%T does not implement sql.Scanner", v)
	}
}

func TestPointScanAndValue(t *testing.T) {
	tests := []struct {
		name    string
		input   interface{}
		want    Point
		wantErr bool
	}{
		{name: "bytes", input: []byte(`[-116.6033,31.4882]`), want: Point{-116.6033, 31.4882}},
		{name: "string", input: `[-116.5998,31.4853]`, want: Point{-116.5998, 31.4853}},
		{name: "nil leaves zero", input: nil, want: Point{}},
		{name: "wrong type", input: 42, wantErr: true},
		{name: "bad json", input: []byte(`{"lng":1}`), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Point
			err := p.Scan(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p)
		})
	}

	v, err := Point{-116.6, 31.48}.Value()
	require.NoError(t, err)
	assert.JSONEq(t, `[-116.6,31.48]`, v.(string))
}

func TestPointAccessors(t *testing.T) {
	p := Point{-116.6018, 31.4856}
	assert.Equal(t, -116.6018, p.Lng())
	assert.Equal(t, 31.4856, p.Lat())
	assert.Equal(t, orb.Point{-116.6018, 31.4856}, p.Orb())
}

func TestRingClosed(t *testing.T) {
	open := Ring{{0, 0}, {1, 0}, {1, 1}, {0, 1}}
	closed := append(append(Ring{}, open...), open[0])

	assert.False(t, open.Closed())
	assert.True(t, closed.Closed())
	assert.False(t, Ring{{0, 0}, {0, 0}}.Closed(), "degenerate ring is not a polygon")
}

func TestRingValueRoundTrip(t *testing.T) {
	ring := Ring{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}
	v, err := ring.Value()
	require.NoError(t, err)

	var scanned Ring
	require.NoError(t, scanned.Scan([]byte(v.(string))))
	assert.Equal(t, ring, scanned)

	empty, err := Ring{}.Value()
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestCornersValidate(t *testing.T) {
	quad := Corners{{-116.6033, 31.4882}, {-116.6005, 31.488}, {-116.6018, 31.4856}, {-116.6033, 31.4858}}
	require.NoError(t, quad.Validate())
	assert.Equal(t, quad[0], quad.TL())
	assert.Equal(t, quad[1], quad.TR())
	assert.Equal(t, quad[2], quad.BR())
	assert.Equal(t, quad[3], quad.BL())

	err := Corners{{0, 0}, {1, 0}, {1, 1}}.Validate()
	assert.True(t, errors.Is(err, ErrInvalidCorners))

	_, err = Corners{{0, 0}}.Value()
	assert.True(t, errors.Is(err, ErrInvalidCorners), "invalid corners must not be persisted")
}

func TestStringListNilValue(t *testing.T) {
	v, err := StringList(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)
}

func TestLotWithZoneJSON(t *testing.T) {
	lot := LotWithZone{
		Lot:  Lot{ID: "loma-poniente-A1", ZoneID: "loma-poniente", Label: "A1", Status: LotAvailable, Price: 78000},
		Zone: &Zone{ID: "loma-poniente", Name: "Loma Poniente", ZoningType: "Residential"},
	}

	data, err := json.Marshal(lot)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "loma-poniente-A1", decoded["id"], "lot fields are promoted")
	assert.Equal(t, "Loma Poniente", decoded["zone"].(map[string]interface{})["name"])
	assert.Equal(t, "Loma Poniente", lot.ZoneName())
	assert.Equal(t, "Residential", lot.ZoningType())
	assert.Empty(t, LotWithZone{}.ZoneName())
}

func TestStatusHelpers(t *testing.T) {
	assert.True(t, LotAvailable.Valid())
	assert.False(t, LotStatus("held").Valid())

	assert.True(t, ReservationPending.IsOpen())
	assert.True(t, ReservationActive.IsOpen())
	assert.False(t, ReservationCompleted.IsOpen())
	assert.False(t, ReservationStatus("approved").Valid())

	assert.True(t, DocumentRequired.Outstanding())
	assert.True(t, DocumentPending.Outstanding())
	assert.False(t, DocumentApproved.Outstanding())

	assert.True(t, TicketWaitingOnUser.IsOpen())
	assert.False(t, TicketResolved.IsOpen())
}
