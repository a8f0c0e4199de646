package tac3

import (
	"fmt"
	"log"
)

// This is an example of how to rewrite a block of three-address code for the three register machine and run it.
func Example() {
	p, err := Compile(`
t = a - b
u = a - c
v = t + u
a = d
d = v + u
`, NewConfig())
	if err != nil {
		log.Fatal(err)
	}
	fmt.Print(p)

	final, err := p.Run(map[string]int64{"a": 10, "b": 3, "c": 4, "d": 7})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(FormatMemory(final))

	// Output:
	// LD  R1, a
	// LD  R2, b
	// -   R3, R1, R2
	// ST  b, R2
	// LD  R2, c
	// ST  t, R3
	// -   R3, R1, R2
	// ST  a, R1
	// LD  R1, t
	// ST  c, R2
	// +   R2, R1, R3
	// ST  t, R1
	// LD  R1, d
	// ST  a, R1
	// ST  d, R1
	// +   R1, R2, R3
	// a=7 b=3 c=4 d=19 t=7 u=6 v=13
}

// This shows the next-use table, which gives for each instruction the distance to the next use of every live variable.
func ExampleProgram_NextUse() {
	p, err := Compile("t = a + b\nu = t * a\n", nil)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Print(p.NextUse())

	// Output:
	// 0: {a:1, b:1}
	// 1: {a:1, t:1}
}
