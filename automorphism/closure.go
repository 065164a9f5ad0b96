package automorphism

// closure walks the orbit of rep under gens breadth-first. Each newly found
// member records the group element that carries rep onto it: the parent's
// element followed by the generator that produced it.
func closure[T comparable](rep T, gens []Perm, apply func(Perm, T) T, n int) ([]T, map[T]Perm) {
	forward := map[T]Perm{rep: Identity(n)}
	members := []T{rep}
	for i := 0; i < len(members); i++ {
		x := members[i]
		for _, g := range gens {
			y := apply(g, x)
			if _, seen := forward[y]; seen {
				continue
			}
			forward[y] = forward[x].Then(g)
			members = append(members, y)
		}
	}
	return members, forward
}

// orbit is closure without the group elements.
func orbit[T comparable](rep T, gens []Perm, apply func(Perm, T) T) []T {
	seen := map[T]struct{}{rep: {}}
	members := []T{rep}
	for i := 0; i < len(members); i++ {
		for _, g := range gens {
			y := apply(g, members[i])
			if _, ok := seen[y]; !ok {
				seen[y] = struct{}{}
				members = append(members, y)
			}
		}
	}
	return members
}
