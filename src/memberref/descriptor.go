/*
 * Boxtin - a classfile transformer
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package memberref

import "strings"

// Param is one parameter of a method descriptor, reduced to the type
// category ProxySynthesizer needs to pick ILOAD/LLOAD/FLOAD/DLOAD/ALOAD and
// to size local-variable slots: I (int/short/char/byte/boolean), L (long),
// F (float), D (double), or A (reference/array).
type Param struct {
	Kind byte
}

// ParseMethodDescriptor splits "(args)ret" into its parameter Params (in
// declaration order) and the return type category (same alphabet as Param,
// plus 'V' for void). It does not validate the descriptor beyond what it
// needs to walk it; malformed input from a decoded classfile is caught
// earlier by constantpool's structural checks.
func ParseMethodDescriptor(descriptor string) ([]Param, byte) {
	if len(descriptor) == 0 || descriptor[0] != '(' {
		return nil, 'V'
	}
	end := strings.IndexByte(descriptor, ')')
	if end < 0 {
		return nil, 'V'
	}
	args := descriptor[1:end]
	ret := descriptor[end+1:]

	var params []Param
	i := 0
	for i < len(args) {
		kind, width := fieldTypeKind(args[i:])
		params = append(params, Param{Kind: kind})
		i += width
	}

	retKind := byte('V')
	if len(ret) > 0 && ret != "V" {
		retKind, _ = fieldTypeKind(ret)
	}
	return params, retKind
}

// fieldTypeKind reads one field descriptor (a base type, a class type
// "Lname;", or an array type "[...") from the front of s and returns its
// type category plus how many bytes it occupied.
func fieldTypeKind(s string) (byte, int) {
	switch s[0] {
	case 'B', 'C', 'S', 'Z':
		return 'I', 1 // sub-int types are widened to int on the operand stack
	case 'I':
		return 'I', 1
	case 'J':
		return 'L', 1
	case 'F':
		return 'F', 1
	case 'D':
		return 'D', 1
	case 'L':
		if end := strings.IndexByte(s, ';'); end >= 0 {
			return 'A', end + 1
		}
		return 'A', len(s)
	case '[':
		// an array of anything is itself a single reference slot; skip
		// past the element type to find the total width.
		depth := 0
		i := 0
		for i < len(s) && s[i] == '[' {
			depth++
			i++
		}
		_, elemWidth := fieldTypeKind(s[i:])
		return 'A', depth + elemWidth
	}
	return 'A', 1
}

// ParamSlotWidths returns, for each parameter, how many local-variable
// slots it occupies (2 for long/double categories, 1 otherwise).
func ParamSlotWidths(params []Param) []int {
	widths := make([]int, len(params))
	for i, p := range params {
		if p.Kind == 'L' || p.Kind == 'D' {
			widths[i] = 2
		} else {
			widths[i] = 1
		}
	}
	return widths
}
