// mempool-bench validates pool profiles and drives pools with synthetic
// allocation workloads.
package main

func main() {
	execute()
}
