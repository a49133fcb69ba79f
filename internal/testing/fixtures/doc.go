// Package fixtures provides test data factories for the learnsync stores.
//
// A Factory writes through any remote.Store, so the same fixtures seed the
// in-memory store in unit tests and SurrealDB or Redis in integration tests:
//
//	f := fixtures.New(store, syncer.NewLayout("app"))
//	f.CreateModule(t, fixtures.ModuleOpts{Course: model.CourseDesign, Order: 2})
//	f.CreatePost(t, fixtures.PostOpts{Content: "hello"})
package fixtures
