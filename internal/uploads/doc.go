// Package uploads stores incoming asset bundles on disk before intake.
//
// Each upload streams to the uploads directory under a random token plus the
// sanitized original name, hashing the content along the way so duplicate
// bundles can be detected before any extraction work happens.
package uploads
