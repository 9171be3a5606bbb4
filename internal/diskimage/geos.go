package diskimage

// geosMagic is the literal GEOS header text compared against the info
// block's probe offset 0xAD (spec §4.1 "the GEOS-header probe offset").
const geosMagic = "GEOS format V1."

// probeGEOSInfoBlock implements the shared D64/D71/D81/DNP/D1M-family GEOS
// detection rule (original_source lib/d81.c, lib/dnp.c,
// lib/d1m_d2m_d4m.c): compare 15 bytes at offset 0xAD against geosMagic;
// if they match, the GEOS "border" block address is the (track, sector)
// pair at offsets 0xAB/0xAC.
func probeGEOSInfoBlock(info []byte) (BlockAddress, bool) {
	const probeOffset = 0xAD
	const borderOffset = 0xAB

	if len(info) < probeOffset+len(geosMagic) {
		return Unused, false
	}
	if string(info[probeOffset:probeOffset+len(geosMagic)]) != geosMagic {
		return Unused, false
	}
	track := info[borderOffset]
	sector := info[borderOffset+1]
	return BlockAddress{Track: track, Sector: sector}, true
}
