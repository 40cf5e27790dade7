// Package app contains the core application logic. It defines the main App
// struct and its lifecycle: Start activates the hot folder and its
// watchers, Stop deactivates them, and Run supervises both until the
// context ends or a folder can no longer be watched. It is decoupled from
// any specific entrypoint like a CLI.
package app
