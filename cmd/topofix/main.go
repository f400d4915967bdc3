package main

import "github.com/topolvm/topofix/cmd/topofix/app"

func main() {
	app.Execute()
}
