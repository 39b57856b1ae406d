// Package payload converts between in-memory structured values and their
// canonical text form (compact JSON with sorted object keys).
//
// The encryption core treats payloads as opaque UTF-8 text; this package
// sits at the boundary before encryption and after decryption. Numbers are
// kept as json.Number during deserialization so round trips do not lose
// precision.
package payload
