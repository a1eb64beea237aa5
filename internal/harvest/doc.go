// Package harvest holds the domain types, interfaces, and error taxonomy
// shared by the session provider, page fetcher, harvest loop, normalizer,
// and exporter. Implementations live in their own leaf packages so that
// each can be tested against fakes of these interfaces.
package harvest
