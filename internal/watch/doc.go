// Package watch enqueues asset bundles dropped into the inbox directory.
//
// A file is only ingested after its size holds steady across one settle
// interval, so partially copied archives are never picked up. Once a job
// record exists for a file it is removed from the inbox, whether or not
// analysis succeeded; files that could not even be enqueued stay put for
// the operator.
package watch
