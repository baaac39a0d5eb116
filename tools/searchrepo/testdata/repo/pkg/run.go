package pkg

func run() {
	// todo: handle the retry budget
}
