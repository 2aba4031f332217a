package classpath

import "aura/internal/ast"

// ResolveMethod finds the method name+desc visible in class owner,
// searching the super class chain first and then the super interfaces.
// It returns nil when owner or the method is unknown.
func (cp *ClassPath) ResolveMethod(owner, name, desc string) *ast.Method {
	seen := make(map[string]bool)
	for n := owner; n != "" && !seen[n]; {
		c := cp.Lookup(n)
		if c == nil {
			break
		}
		if m := c.FindMethod(name, desc); m != nil {
			return m
		}
		seen[n] = true
		n = c.Super
	}
	return cp.resolveInterfaceMethod(owner, name, desc, seen)
}

func (cp *ClassPath) resolveInterfaceMethod(class, name, desc string, seen map[string]bool) *ast.Method {
	c := cp.Lookup(class)
	if c == nil {
		return nil
	}
	for _, i := range c.Interfaces {
		if seen[i] {
			continue
		}
		seen[i] = true
		if ic := cp.Lookup(i); ic != nil {
			if m := ic.FindMethod(name, desc); m != nil {
				return m
			}
		}
		if m := cp.resolveInterfaceMethod(i, name, desc, seen); m != nil {
			return m
		}
	}
	if c.Super != "" && !seen["super:"+c.Super] {
		seen["super:"+c.Super] = true
		return cp.resolveInterfaceMethod(c.Super, name, desc, seen)
	}
	return nil
}

// ResolveField finds the field name:desc visible in class owner,
// searching interfaces before the super class as the JVM does.
func (cp *ClassPath) ResolveField(owner, name, desc string) *ast.Field {
	return cp.resolveField(owner, name, desc, make(map[string]bool))
}

func (cp *ClassPath) resolveField(class, name, desc string, seen map[string]bool) *ast.Field {
	if class == "" || seen[class] {
		return nil
	}
	seen[class] = true
	c := cp.Lookup(class)
	if c == nil {
		return nil
	}
	if f := c.FindField(name, desc); f != nil {
		return f
	}
	for _, i := range c.Interfaces {
		if f := cp.resolveField(i, name, desc, seen); f != nil {
			return f
		}
	}
	return cp.resolveField(c.Super, name, desc, seen)
}
