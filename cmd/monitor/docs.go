package main

//go:generate swag init -g cmd/monitor/main.go -o docs

// @title           Newswatch Signal API
// @version         0.1.0
// @description     Signal evaluation and notification dispatch for news articles.
// @host            localhost:8080
// @BasePath        /
// @schemes         http
