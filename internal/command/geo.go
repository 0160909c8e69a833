package command

import (
	"strconv"
	"strings"

	"github.com/adred-codev/kvnode/internal/geohash"
	"github.com/adred-codev/kvnode/internal/resp"
)

func (d *Dispatcher) cmdGeoAdd(args []string) (resp.Value, bool) {
	if len(args) < 5 {
		return wrongArgs("geoadd"), false
	}
	lon, err1 := strconv.ParseFloat(args[2], 64)
	lat, err2 := strconv.ParseFloat(args[3], 64)
	if err1 != nil || err2 != nil {
		return resp.Error("ERR value is not a valid float"), false
	}
	score, err := geohash.Encode(lon, lat)
	if err != nil {
		return resp.Error(err.Error()), false
	}
	isNew, err := d.rt.Store.ZAdd(args[1], args[4], score)
	if err != nil {
		return resp.Error(err.Error()), false
	}
	if isNew {
		return resp.Integer(1), true
	}
	return resp.Integer(0), true
}

func (d *Dispatcher) cmdGeoPos(args []string) resp.Value {
	if len(args) < 3 {
		return wrongArgs("geopos")
	}
	out := make([]resp.Value, 0, len(args)-2)
	for _, member := range args[2:] {
		score, ok, err := d.rt.Store.ZScore(args[1], member)
		if err != nil {
			return resp.Error(err.Error())
		}
		if !ok {
			out = append(out, resp.NullArray())
			continue
		}
		lon, lat := geohash.Decode(score)
		out = append(out, resp.Array(
			resp.BulkString(strconv.FormatFloat(lon, 'f', 17, 64)),
			resp.BulkString(strconv.FormatFloat(lat, 'f', 17, 64)),
		))
	}
	return resp.Array(out...)
}

func (d *Dispatcher) cmdGeoDist(args []string) resp.Value {
	if len(args) < 4 {
		return wrongArgs("geodist")
	}
	unit := "m"
	if len(args) >= 5 {
		unit = args[4]
	}
	factor, ok := geohash.UnitToMeters(unit)
	if !ok {
		return resp.Error("ERR unsupported unit provided. please use M, KM, FT, MI")
	}

	s1, ok1, err := d.rt.Store.ZScore(args[1], args[2])
	if err != nil {
		return resp.Error(err.Error())
	}
	s2, ok2, err := d.rt.Store.ZScore(args[1], args[3])
	if err != nil {
		return resp.Error(err.Error())
	}
	if !ok1 || !ok2 {
		return resp.NullBulk()
	}
	lon1, lat1 := geohash.Decode(s1)
	lon2, lat2 := geohash.Decode(s2)
	meters := geohash.HaversineMeters(lon1, lat1, lon2, lat2)
	return resp.BulkString(strconv.FormatFloat(meters/factor, 'f', 4, 64))
}

// cmdGeoSearch implements GEOSEARCH key FROMLONLAT lon lat BYRADIUS radius
// unit, parsing BYRADIUS positionally (spec-as-written deviation from
// Redis's fuller GEOSEARCH grammar).
func (d *Dispatcher) cmdGeoSearch(args []string) resp.Value {
	if len(args) < 8 {
		return wrongArgs("geosearch")
	}
	key := args[1]
	if strings.ToUpper(args[2]) != "FROMLONLAT" {
		return resp.Error("ERR unsupported GEOSEARCH form")
	}
	lon, err1 := strconv.ParseFloat(args[3], 64)
	lat, err2 := strconv.ParseFloat(args[4], 64)
	if err1 != nil || err2 != nil {
		return resp.Error("ERR value is not a valid float")
	}
	if strings.ToUpper(args[5]) != "BYRADIUS" {
		return resp.Error("ERR unsupported GEOSEARCH form")
	}
	radius, err := strconv.ParseFloat(args[6], 64)
	if err != nil {
		return resp.Error("ERR value is not a valid float")
	}
	factor, ok := geohash.UnitToMeters(args[7])
	if !ok {
		return resp.Error("ERR unsupported unit provided. please use M, KM, FT, MI")
	}
	radiusMeters := radius * factor

	members, err := d.rt.Store.ZAll(key)
	if err != nil {
		return resp.Error(err.Error())
	}
	out := make([]resp.Value, 0)
	for _, m := range members {
		mlon, mlat := geohash.Decode(m.Score)
		if geohash.HaversineMeters(lon, lat, mlon, mlat) <= radiusMeters {
			out = append(out, resp.BulkString(m.Member))
		}
	}
	return resp.Array(out...)
}
