// Beacon is a tracker of page visits with a realtime dashboard.
//
// Each time somebody opens a tracked page, beacon detects where this
// visitor comes from, stores a visit and immediately shows it to
// everybody who watches the admin dashboard.
//
// Tool itself is organized into 3 logical parts:
//
// Beaconlib
//
// beaconlib is a main package of the application. It contains a
// resolver which asks geolocation providers one by one, a recorder
// which stores visits in background, a realtime hub for admin
// dashboards and an HTTP handler which glues everything together.
//
// Providers
//
// This package has a set of geolocation providers: a couple of online
// services and a local MaxMind database.
//
// Storage
//
// A store of visits on top of SQLite. It works with local files and
// remote libSQL databases.
//
// A main package itself is an example of how to wire all these parts.
// It reads HJSON config, starts HTTP server and realtime hub under
// supervision and stops them gracefully on SIGINT or SIGTERM.
package main
