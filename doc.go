// Package navgen is the runtime imported by code generated with the navgen
// command.
//
// Generated builders accumulate an Include as relationships are selected and
// hand it to a Source when a terminal such as All runs. Each generated shape
// is described by a Descriptor, and companion result types get a Projection
// that maps loaded entities onto them.
//
//	orders, err := shop.QueryOrder(src).
//		WithCustomer(func(c shop.CustomerNav) navgen.Includer {
//			return c.WithShippingAddress()
//		}).
//		WithLines().
//		All(ctx)
package navgen
