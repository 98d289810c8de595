// Command demo boots the kernel with a handful of tasks exercising
// priority preemption, mutex priority inheritance, and a producer/consumer
// message queue, using the posix arch backend as its concrete HAL.
// Priorities follow the kernel's NVIC-style convention: lower number wins.
package main

import (
	"fmt"
	"time"

	"github.com/freeman1216/badrtos/arch"
	"github.com/freeman1216/badrtos/arch/posix"
	"github.com/freeman1216/badrtos/kernel"
)

func main() {
	clock := posix.NewClock(2 * time.Millisecond)
	cfg := kernel.DefaultConfig()
	cfg.Installer = posix.NewRegionInstaller()
	cfg.StaticRegions = []arch.Region{
		{Size: 4096, Attrs: arch.AttrRead}, // stand-in for the kernel's own code/rodata region
	}
	cfg.Clock = clock
	k := kernel.New(cfg)

	mu := k.NewMutex()
	queue := kernel.NewMsgQueue(8)

	low := k.TaskMake("low", 5, 4096, func(self *kernel.TCB) {
		for i := 0; i < 3; i++ {
			mu.Take(self, kernel.WaitForever)
			fmt.Printf("low: holding mutex (iteration %d)\n", i)
			time.Sleep(5 * time.Millisecond)
			mu.Put(self)
			k.TaskDelay(self, 1)
		}
	}, nil)
	low.SetRegions([]arch.Region{
		{Size: 4096, Attrs: arch.AttrRead | arch.AttrWrite}, // this task's private data region
	})

	k.TaskMake("high", 1, 4096, func(self *kernel.TCB) {
		// sleep on the delay list first so low gets a chance to grab the
		// mutex; the contended take below then exercises inheritance.
		k.TaskDelay(self, 2)
		mu.Take(self, kernel.WaitForever)
		fmt.Println("high: acquired mutex after inheritance boost")
		mu.Put(self)
	}, nil)

	k.TaskMake("producer", 3, 4096, func(self *kernel.TCB) {
		for i := 0; i < 5; i++ {
			for queue.Post(1, i) != kernel.QueueOK {
				k.TaskDelay(self, 1)
			}
			k.TaskDelay(self, 2)
		}
	}, nil)

	k.TaskMake("consumer", 3, 4096, func(self *kernel.TCB) {
		received := 0
		var msg kernel.Message
		for received < 5 {
			if queue.Pull(&msg) == kernel.QueueOK {
				fmt.Printf("consumer: got signal=%d arg=%v\n", msg.Signal, msg.Arg)
				received++
				continue
			}
			k.TaskDelay(self, 1)
		}
	}, nil)

	k.Boot()
	time.Sleep(200 * time.Millisecond)
	k.Shutdown()
}
