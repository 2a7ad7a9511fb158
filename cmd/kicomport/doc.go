// Command kicomport is the CLI for the KiComport intake daemon. It uploads
// archives for analysis, lists jobs, records candidate selections, and
// triggers library imports over the daemon HTTP API. The daemon itself can
// be run in the foreground with `kicomport daemon`.
package main
