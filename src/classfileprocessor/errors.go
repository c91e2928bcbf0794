/*
 * Boxtin - a classfile transformer
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package classfileprocessor

import "github.com/cojen/boxtin/src/boxerr"

// boxerrf wraps a formatted message as a boxerr.ClassFormat error, the kind
// this package returns for every failure it detects itself (spec §4.7 step 7:
// "any internal error surfaces as ClassFormat"); an invalid constant-pool
// Utf8 entry reaches the caller as boxerr.MalformedUtf instead.
func boxerrf(format string, args ...any) error {
	return boxerr.Wrapf(boxerr.ClassFormat, format, args...)
}
