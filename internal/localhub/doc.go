// Package localhub implements the Local Hub Manager: the single message
// hub representing every in-process application. It registers exactly one
// hub with the router, translates router callbacks into deliveries onto a
// single-threaded event loop, and exposes a higher-level API — published
// services, ready-event subscriptions, session open/close/send — to the
// applications that live on it.
package localhub
