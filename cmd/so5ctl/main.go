// Command so5ctl is a minimal ping-pong demonstration of so5: two agents in
// one coop exchange a counted message over a pair of mboxes until a limit is
// reached, then the coop deregisters and the environment shuts down.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/so5go/so5"
)

type ping struct{ n int }
type pong struct{ n int }

type pingAgent struct {
	*so5.Agent
	out so5.Mbox
	in  so5.Mbox
	max int
}

func (a *pingAgent) DefineAgent(self *so5.Agent) error {
	return self.Subscribe(a.in, pong{}, nil, false, func(evt *so5.EventContext) error {
		p := evt.Message.Payload().(pong)
		if p.n >= a.max {
			fmt.Printf("ping: done at %d\n", p.n)
			a.Environment().DeregisterCoop(a.Coop().Name(), "limit-reached")
			return nil
		}
		return so5.Send(a.out, ping{n: p.n + 1})
	})
}

func (a *pingAgent) EvtStart(self *so5.Agent) error {
	return so5.Send(a.out, ping{n: 1})
}

type pongAgent struct {
	*so5.Agent
	out so5.Mbox
	in  so5.Mbox
}

func (a *pongAgent) DefineAgent(self *so5.Agent) error {
	return self.Subscribe(a.in, ping{}, nil, false, func(evt *so5.EventContext) error {
		p := evt.Message.Payload().(ping)
		return so5.Send(a.out, pong{n: p.n})
	})
}

func main() {
	rounds := flag.Int("rounds", 10, "number of ping/pong round trips before shutdown")
	flag.Parse()

	zlog, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("so5ctl: build logger: %v", err)
	}
	defer zlog.Sync()

	env := so5.NewEnvironment(
		so5.WithLogger(so5.NewZapLogger(zlog)),
		so5.WithAutoShutdownWhenNoCoops(true),
	)

	pingToPong := env.CreateMbox()
	pongToPing := env.CreateMbox()

	coop := so5.NewCoop("ping-pong")

	pa := &pingAgent{out: pingToPong, in: pongToPing, max: *rounds}
	pa.Agent = so5.NewAgent(pa, nil)
	coop.AddAgent(pa.Agent)

	po := &pongAgent{out: pongToPing, in: pingToPong}
	po.Agent = so5.NewAgent(po, nil)
	coop.AddAgent(po.Agent)

	if err := env.RegisterCoop(coop); err != nil {
		log.Fatalf("so5ctl: register coop: %v", err)
	}

	start := time.Now()
	if err := env.Run(); err != nil {
		log.Fatalf("so5ctl: run: %v", err)
	}
	fmt.Printf("so5ctl: finished in %s\n", time.Since(start))
}
