// Command libraryctl runs administrative tasks against the library database.
package main

func main() {
	Execute()
}
