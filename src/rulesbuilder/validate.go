/*
 * Boxtin - a classfile transformer
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package rulesbuilder

import "github.com/cojen/boxtin/src/boxerr"

// unknownMemberError builds the UnknownMember-kind error Validate reports
// for a rule that names a member absent from the referenced class. An empty
// descriptor means the rule was a whole-method rule (AllowMethod/DenyMethod)
// naming no particular overload; ClassLookup.HasMember(owner, name, "") is defined
// to mean "any overload of this name exists".
func unknownMemberError(owner, name, descriptor string) error {
	if descriptor == "" {
		return boxerr.Wrapf(boxerr.UnknownMember, "%s has no method named %q", owner, name)
	}
	return boxerr.Wrapf(boxerr.UnknownMember, "%s has no member %s%s", owner, name, descriptor)
}
