package main

import "github.com/varalys/pubguard/cmd/pubguard"

func main() { pubguard.Execute() }
