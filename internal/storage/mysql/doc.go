// Package mysql provides the MySQL-backed settings repository greeterd can
// read its message from. It owns connection pool tuning, the embedded schema
// migrations for the settings table and the queries against it.
package mysql
