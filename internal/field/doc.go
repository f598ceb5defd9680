// Package field provides typed field descriptors.
//
// A descriptor is created once per model field and is immutable. Its methods
// are exactly the operators legal for its value domain and accept only that
// domain's Go type, so an illegal operator/value pair is a compile error:
//
//	age := field.NewNumeric[int]("age")
//	name := field.NewString("name")
//
//	age.Gt(15)                 // ok
//	name.StartsWith("b")       // ok
//	age.StartsWith("b")        // does not compile
//	name.Gt(15)                // does not compile
//
// Values that are well typed but still invalid (NaN, a negative length, a
// malformed regular expression) are reported by queryir.Builder.Build.
package field
