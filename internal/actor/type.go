package actor

import "fmt"

func sprintType(msg interface{}) string {
	return fmt.Sprintf("%T", msg)
}
