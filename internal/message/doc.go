// Package message resolves the single greeting value greeterd serves. Sources
// are consulted in priority order and the first one holding a value wins, an
// explicitly empty value included. Resolution happens once at startup.
package message
