package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

func smells(m dsl.Matcher) {
	// Two consecutive guards returning the same value can merge with ||.
	m.Match(`if $c1 { return $ret }; if $c2 { return $ret }`).
		Report(`two consecutive guards return the same value; consider merging conditions with ||`).
		Suggest(`if $c1 || $c2 { return $ret }`)

	m.Match(`if $c1 { continue }; if $c2 { continue }`).
		Report(`two consecutive continues; consider merging conditions with ||`).
		Suggest(`if $c1 || $c2 { continue }`)

	// Nested loops are a refactor hint, not always a defect.
	m.Match(`for $*_ { for $*_ { $*_ } }`).
		Report(`nested for-loop; consider extracting inner loop logic or reducing algorithmic complexity`)

	m.Match(`errors.New(fmt.Sprintf($*args))`).
		Report(`errors.New(fmt.Sprintf(...)) can be fmt.Errorf(...)`).
		Suggest(`fmt.Errorf($args)`)
}
