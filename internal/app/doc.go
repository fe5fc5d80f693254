// Package app provides the orchestration layer for the tankobon client.
//
// # Overview
//
// This package wires together configuration, logging, the library client,
// the shared store, two adaptive polling controllers, metrics, and either the
// TUI or the headless watch loop. It is the composition root.
//
// # Startup
//
//	Run()
//	  ├─> config.Load() + flag overrides
//	  ├─> logging.Setup()        stderr (watch) or <data_dir>/tankobon.log (TUI)
//	  ├─> prefs.Load()
//	  ├─> library.NewClient()
//	  ├─> client.WaitReady()     backoff probe; fatal only in watch mode
//	  ├─> NewPollers()           downloads + notifications controllers
//	  └─> errgroup
//	        ├─> metrics.Bind()   one per controller
//	        ├─> metrics server   when an address is configured
//	        ├─> Prime()          first cycle on every controller
//	        └─> ui.Run() or Watch()
//
// # Pollers
//
// The downloads controller treats queued or running downloads in the store as
// active work, so it polls at its active interval while a chapter is being
// fetched and backs off once the queue drains. The notifications controller
// does the same for unread notifications with a slower strategy.
//
// Fetch functions write into the store. A cycle whose context was cancelled,
// because a newer cycle superseded it or the controller stopped, reports
// context.Canceled and leaves the store untouched.
//
// # Shutdown
//
// When the UI exits or the parent context is cancelled the group context is
// done: controllers are closed (which also ends their subscriptions), the
// metrics server shuts down, and Run returns.
//
// # Watch Mode
//
// Headless mode logs every poller transition with a store summary. A paused
// controller stays paused until the process receives SIGHUP, which resets
// every paused controller.
package app
