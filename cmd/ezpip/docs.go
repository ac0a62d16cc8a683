package main

//go:generate swag init -g cmd/ezpip/docs.go -o docs

// @title           ez-pip Pipeline API
// @version         0.1.0
// @description     Bots, signals, decisions, orders, positions and the task scheduler.
// @host            localhost:8080
// @BasePath        /
// @schemes         http
