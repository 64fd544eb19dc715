package ethrpc

// Read surface and log events of the ticketing contract. Kept to the
// fragment the read layer consumes; write functions appear so calldata
// can be packed for wallets, their execution is out of scope here.
const ticketingABI = `[
  {"type":"function","stateMutability":"view","name":"nextEventId",
   "inputs":[],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","stateMutability":"view","name":"getEventDetails",
   "inputs":[{"name":"eventId","type":"uint256"}],
   "outputs":[
     {"name":"name","type":"string"},
     {"name":"description","type":"string"},
     {"name":"date","type":"uint256"},
     {"name":"venue","type":"string"},
     {"name":"ticketPrice","type":"uint256"},
     {"name":"maxSupply","type":"uint256"},
     {"name":"currentSupply","type":"uint256"},
     {"name":"organizer","type":"address"},
     {"name":"status","type":"uint8"},
     {"name":"createdAt","type":"uint256"}]},
  {"type":"function","stateMutability":"view","name":"getTicketInfo",
   "inputs":[{"name":"tokenId","type":"uint256"}],
   "outputs":[
     {"name":"eventId","type":"uint256"},
     {"name":"ticketNumber","type":"uint256"},
     {"name":"purchasePrice","type":"uint256"},
     {"name":"purchaseDate","type":"uint256"},
     {"name":"originalBuyer","type":"address"}]},
  {"type":"function","stateMutability":"view","name":"ownerOf",
   "inputs":[{"name":"tokenId","type":"uint256"}],
   "outputs":[{"name":"","type":"address"}]},
  {"type":"function","stateMutability":"view","name":"balanceOf",
   "inputs":[{"name":"owner","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","stateMutability":"view","name":"getTotalRevenue",
   "inputs":[{"name":"eventId","type":"uint256"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","stateMutability":"view","name":"getWithdrawableAmount",
   "inputs":[{"name":"eventId","type":"uint256"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","stateMutability":"view","name":"hasRole",
   "inputs":[{"name":"role","type":"bytes32"},{"name":"account","type":"address"}],
   "outputs":[{"name":"","type":"bool"}]},

  {"type":"function","stateMutability":"nonpayable","name":"createEvent",
   "inputs":[
     {"name":"name","type":"string"},
     {"name":"description","type":"string"},
     {"name":"date","type":"uint256"},
     {"name":"venue","type":"string"},
     {"name":"ticketPrice","type":"uint256"},
     {"name":"maxSupply","type":"uint256"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","stateMutability":"payable","name":"purchaseTicket",
   "inputs":[{"name":"eventId","type":"uint256"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","stateMutability":"nonpayable","name":"updateEventStatus",
   "inputs":[{"name":"eventId","type":"uint256"},{"name":"newStatus","type":"uint8"}],
   "outputs":[]},
  {"type":"function","stateMutability":"nonpayable","name":"withdrawRevenue",
   "inputs":[{"name":"eventId","type":"uint256"}],
   "outputs":[]},
  {"type":"function","stateMutability":"nonpayable","name":"grantOrganizerRole",
   "inputs":[{"name":"account","type":"address"}],
   "outputs":[]},
  {"type":"function","stateMutability":"nonpayable","name":"revokeOrganizerRole",
   "inputs":[{"name":"account","type":"address"}],
   "outputs":[]},
  {"type":"function","stateMutability":"nonpayable","name":"transferFrom",
   "inputs":[
     {"name":"from","type":"address"},
     {"name":"to","type":"address"},
     {"name":"tokenId","type":"uint256"}],
   "outputs":[]},

  {"type":"event","name":"EventCreated","anonymous":false,
   "inputs":[
     {"name":"eventId","type":"uint256","indexed":true},
     {"name":"name","type":"string","indexed":false},
     {"name":"organizer","type":"address","indexed":true},
     {"name":"ticketPrice","type":"uint256","indexed":false},
     {"name":"maxSupply","type":"uint256","indexed":false}]},
  {"type":"event","name":"TicketPurchased","anonymous":false,
   "inputs":[
     {"name":"tokenId","type":"uint256","indexed":true},
     {"name":"eventId","type":"uint256","indexed":true},
     {"name":"buyer","type":"address","indexed":true},
     {"name":"ticketNumber","type":"uint256","indexed":false},
     {"name":"price","type":"uint256","indexed":false}]},
  {"type":"event","name":"EventStatusChanged","anonymous":false,
   "inputs":[
     {"name":"eventId","type":"uint256","indexed":true},
     {"name":"oldStatus","type":"uint8","indexed":false},
     {"name":"newStatus","type":"uint8","indexed":false}]},
  {"type":"event","name":"RevenueWithdrawn","anonymous":false,
   "inputs":[
     {"name":"eventId","type":"uint256","indexed":true},
     {"name":"organizer","type":"address","indexed":true},
     {"name":"amount","type":"uint256","indexed":false}]}
]`
