// Package domain models the seismological entities handled by the acquisition tools.
//
// # Data Source
//
// All data comes from FDSN web services (https://www.fdsn.org/webservices/):
// the station service for channel metadata and StationXML, the dataselect
// service for miniSEED waveforms, and the availability service for the time
// spans held by a data center. Seismic phase travel times come from the IRIS
// traveltime service, which runs TauP behind an HTTP query.
//
// # Identifiers
//
// Channels are addressed by their SEED code tuple NET.STA.LOC.CHA. An empty
// location code is sent to the services as "--". Events are identified by
// their origin time formatted as YYYYMMDDhhmmss, which is also the directory
// name of the event in the archive.
//
// # Time Windows
//
// A window is either anchored on the origin time:
//
//	[origin + start_offset, origin + end_offset]
//
// or on phase arrival times computed for an epicentral distance:
//
//	[origin + first(start phases, d1) + start_offset,
//	 origin + last(end phases, d2) + end_offset]
//
// In band mode d1/d2 are the inner/outer radius of a distance band, in
// per-station mode both are the station's own distance. A window whose end
// is not after its start is rejected with [ErrInvalidWindow].
//
// # Archive Layout
//
//	mseed/{eventid}/{NET}.{STA}.{LOC}.{CHA}__{start}__{end}.mseed
//	stations/{eventid}/{NET}.{STA}.xml
//
// with times formatted 2006-01-02T15-04-05Z. Files that already exist are
// never fetched again, which keeps reruns idempotent. See [WaveformPath].
package domain
