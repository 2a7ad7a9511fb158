// Package importer lands selected candidates in the destination KiCad
// library.
//
// All imports accumulate under one stable library identity: symbols merge
// into a single .kicad_sym file with duplicate names skipped, footprints
// flatten into one .pretty folder, and 3D models keep their relative layout
// under one folder. Writes are atomic (temp file plus rename) and serialized
// through advisory file locks so concurrent imports never interleave.
package importer
