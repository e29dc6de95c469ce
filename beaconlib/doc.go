// This package provides a set of structs and functions which are used
// to track page visits: where a visitor comes from, what it uses to
// browse and who has to know about it right now.
//
// beaconlib is core of the beacon project. The rest of the application
// is a wiring example: how to read a configuration, how to choose
// providers and a store, how to run everything under supervision.
//
// The pipeline is simple. A visit comes to the HTTP handler, the page
// is served immediately and a Recorder takes the rest in background:
// Resolver asks geolocation providers one by one until some of them
// answers, a Visit is saved into Store and Hub pushes it to all
// subscribed admin dashboards.
//
// Resolver never fails. If none of the providers can geolocate an
// address, a visit is stored with unknown location. Later a browser can
// send more precise data and Recorder patches the most recent pending
// visit of the same address.
package beaconlib
