// Command hive is a kanban board that drives AI coding agents through
// planning, execution and review in isolated git worktrees.
package main

func main() {
	Execute()
}
