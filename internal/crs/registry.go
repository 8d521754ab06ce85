package crs

// EPSG codes with special meaning.
const (
	SRIDWGS84           = 4326 // WGS 84
	SRIDSIRGAS2000      = 4674 // SIRGAS 2000 geographic
	SRIDBrazilPolyconic = 5880 // SIRGAS 2000 / Brazil Polyconic
)

// builtin maps EPSG codes commonly found in Brazilian parcel (CAR) and
// zoning (ZEE) datasets to PROJ definitions.
var builtin = map[int]string{
	4326:  "+proj=longlat +datum=WGS84 +no_defs",
	4674:  "+proj=longlat +ellps=GRS80 +towgs84=0,0,0,0,0,0,0 +no_defs",
	4618:  "+proj=longlat +ellps=aust_SA +towgs84=-66.87,4.37,-38.52,0,0,0,0 +no_defs",
	3857:  "+proj=merc +a=6378137 +b=6378137 +lat_ts=0 +lon_0=0 +x_0=0 +y_0=0 +k=1 +units=m +nadgrids=@null +wktext +no_defs",
	5880:  "+proj=poly +lat_0=0 +lon_0=-54 +x_0=5000000 +y_0=10000000 +ellps=GRS80 +towgs84=0,0,0,0,0,0,0 +units=m +no_defs",
	31981: "+proj=utm +zone=21 +south +ellps=GRS80 +towgs84=0,0,0,0,0,0,0 +units=m +no_defs",
	31982: "+proj=utm +zone=22 +south +ellps=GRS80 +towgs84=0,0,0,0,0,0,0 +units=m +no_defs",
	31983: "+proj=utm +zone=23 +south +ellps=GRS80 +towgs84=0,0,0,0,0,0,0 +units=m +no_defs",
	31984: "+proj=utm +zone=24 +south +ellps=GRS80 +towgs84=0,0,0,0,0,0,0 +units=m +no_defs",
	29192: "+proj=utm +zone=22 +south +ellps=aust_SA +towgs84=-66.87,4.37,-38.52,0,0,0,0 +units=m +no_defs",
	29193: "+proj=utm +zone=23 +south +ellps=aust_SA +towgs84=-66.87,4.37,-38.52,0,0,0,0 +units=m +no_defs",
}

// Definition returns the built-in PROJ definition for an EPSG code.
func Definition(srid int) (string, bool) {
	def, ok := builtin[srid]
	return def, ok
}
