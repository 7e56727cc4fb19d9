/*
File Name:  Exit.go

Exit codes signal why Init failed; the only failure modes this module
actually has are config access/parsing and identity key material setup,
so the set is small deliberately rather than padded out to mirror a
larger host application's surface.
*/

package core

const (
	ExitSuccess           = 0
	ExitErrorConfigAccess = 1 // Error accessing the config file.
	ExitErrorConfigRead   = 2 // Error reading the config file.
	ExitErrorConfigParse  = 3 // Error parsing the config file.
	ExitErrorLogInit      = 4 // Error initializing log file.
	ExitErrorIdentityInit = 5 // Error generating or loading identity key material.
	ExitGraceful          = 9 // Graceful shutdown.
)
