// Package media defines the footage classification vocabulary (file kinds,
// mediums, footage types), the supported-extension allow-lists, and the
// metadata extraction contract used during import.
package media
